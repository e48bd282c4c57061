package structs

// FailsafeMode is the configuration struct for administratively interacting
// with the persisted failsafe lock.
type FailsafeMode struct {
	// Disable instructs the failsafe CLI command to disable failsafe mode.
	Disable bool

	// Enable instructs the failsafe CLI command to enable failsafe mode.
	Enable bool

	// Force suppresses confirmation prompts when enabling/disabling failsafe.
	Force bool

	// Reason is recorded in the state when failsafe is enabled by hand.
	Reason string

	// Verb represents the action to be displayed during confirmation prompts.
	Verb string
}
