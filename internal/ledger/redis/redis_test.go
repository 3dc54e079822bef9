package redis

import (
	"context"
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSet struct {
	members map[string]map[string]bool
	err     error
}

func (f *fakeSet) SIsMember(_ context.Context, key string, member interface{}) *goredis.BoolCmd {
	if f.err != nil {
		return goredis.NewBoolResult(false, f.err)
	}
	return goredis.NewBoolResult(f.members[key][member.(string)], nil)
}

func (f *fakeSet) SAdd(_ context.Context, key string, members ...interface{}) *goredis.IntCmd {
	if f.err != nil {
		return goredis.NewIntResult(0, f.err)
	}
	if f.members[key] == nil {
		f.members[key] = map[string]bool{}
	}
	var added int64
	for _, m := range members {
		if !f.members[key][m.(string)] {
			added++
		}
		f.members[key][m.(string)] = true
	}
	return goredis.NewIntResult(added, nil)
}

func TestLedgerSeenAndMark(t *testing.T) {
	t.Parallel()

	fake := &fakeSet{members: map[string]map[string]bool{}}
	l := NewWithClient(fake, "")
	ctx := context.Background()

	seen, err := l.Seen(ctx, "VAAC_20240115120000_vag.png")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Mark(ctx, "VAAC_20240115120000_vag.png"))
	assert.True(t, fake.members[DefaultKey]["VAAC_20240115120000_vag.png"])

	seen, err = l.Seen(ctx, "VAAC_20240115120000_vag.png")
	require.NoError(t, err)
	assert.True(t, seen)
	require.NoError(t, l.Close())
}

func TestLedgerPropagatesErrors(t *testing.T) {
	t.Parallel()

	l := NewWithClient(&fakeSet{err: errors.New("connection reset")}, "custom")
	_, err := l.Seen(context.Background(), "k")
	require.Error(t, err)
	require.Error(t, l.Mark(context.Background(), "k"))
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "not-a-redis-url", "")
	require.Error(t, err)
}
