// Package registry discovers the installable resources in an upstream
// source tree, maps each one to its destination under the install root,
// and assigns it a tier. Discovery is read-only.
package registry
