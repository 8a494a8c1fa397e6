// Package runconfig models the declarative run configuration: an ordered
// list of sections, one per component, keyed by component kind. It decodes
// configurations from JSON, YAML and HCL documents.
//
// In JSON and YAML each top-level key is a kind whose value is either a
// section object or a list of section objects:
//
//	{"algorithm": {"name": "VQE"}, "optimizer": {"name": "L_BFGS_B", "maxfun": 1000}}
//
// In HCL each block is a section:
//
//	algorithm { name = "VQE" }
//	optimizer {
//	  name   = "L_BFGS_B"
//	  maxfun = 1000
//	}
package runconfig
