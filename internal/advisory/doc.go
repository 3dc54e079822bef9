// Package advisory defines the volcanic ash advisory domain: listing entries, the latest
// selection and its derived asset locations, and the interfaces the alert pipeline
// depends on.
package advisory
