// Package manifest records which files an installation deployed, from which
// upstream revision, and the content hash each file had when it was last
// written or acknowledged. The manifest is the baseline the reconciliation
// engine compares live files against.
package manifest
