// Package resolver expands the module tokens a user passes to the run command
// into concrete targets. Each target names one configuration of a registered
// module together with the driver script and working directory it runs in.
package resolver
