// Package staging owns per-job temporary workspaces under paths.staging_dir
// and the sweeps that reclaim them after crashes.
package staging
