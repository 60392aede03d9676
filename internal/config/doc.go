// Package config loads the engine configuration.
//
// Values come from the built-in defaults, then an optional YAML file, then
// GOCHUNK_<KEY> environment variables, in that order. Byte sizes accept
// humanized forms ("64MB", "1GiB"). Validate reports the first offending
// key as a *types.ParamError wrapping types.ErrInvalidArgument.
//
// Example file:
//
//	chunk_size: 1024
//	threshold: 2.5
//	window_size: 16
//	checkpoint_dir: ~/.gochunk/checkpoints
//	max_mem_usage: 128MB
//	checkpoint_freq: 50000
//	history_size: 3
//	db_path: ~/.gochunk/gochunk.db
//	workers: 4
//	log_level: debug
//	strategy:
//	  name: quantile
//	  params:
//	    qlow: 0.05
//	    qhigh: 0.95
package config
