package reconcile

// State is one point in the Reconciler's state machine.
type State string

const (
	StateIdle                State = "Idle"
	StateFetchingDatasets     State = "FetchingDatasets"
	StateAborted              State = "Aborted"
	StateResolvingUsers       State = "ResolvingUsers"
	StateCreatingPermissions  State = "CreatingPermissions"
	StateRevokingPermissions  State = "RevokingPermissions"
	StateReporting            State = "Reporting"
)
