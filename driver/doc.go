// Package driver implements the pipeline execution driver: topological
// scheduling over a pipeline DAG and the adaptive JIT-vs-optimizing
// dispatch policy for split pipelines.
package driver
