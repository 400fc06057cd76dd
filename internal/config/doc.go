// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config.yaml. Every setting can
// be supplied as TASKER_<SECTION>_<KEY>.
package config
