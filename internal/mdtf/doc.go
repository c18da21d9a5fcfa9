// Package mdtf supports diagnostics written for the MDTF-diagnostics
// framework (PODs). PODs expect the framework to export their data paths,
// translate variable names through a naming convention table, activate a
// conda environment and tidy their figures after they run. The driver
// reproduces that contract so PODs can run unmodified.
package mdtf
