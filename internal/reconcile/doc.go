// Package reconcile decides, per file, how an installed tree moves to a new
// upstream revision, and carries the decision out.
//
// Each path is classified from three hashes: the one recorded at the last
// install, the one on disk now, and the one upstream would write. Classify
// is a pure function of those three. Build turns a manifest and a catalog
// into a Plan; Apply executes it and reports which hash to record for
// every path.
package reconcile
