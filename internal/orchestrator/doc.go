// Package orchestrator runs resolved targets. Every target gets a fresh
// working directory and a cmec_run.bash script exporting the CMEC
// environment. Scripts then run one after another, and a failing script is
// recorded without stopping the batch. Finally the target's result page is
// linked into the output directory's index.
package orchestrator
