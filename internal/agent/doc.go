// Package agent resolves the model and provider configuration and drives a
// query through the engine while the provider servers are up, delivering the
// answer as an ordered channel of fragments.
package agent
