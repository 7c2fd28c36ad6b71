package cmd

// Execute runs the beacon CLI. Service wiring happens inside each command's
// RunE, so --help and version work without a valid configuration.
func Execute() error {
	return NewRootCmd().Execute()
}
