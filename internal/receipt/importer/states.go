package importer

// State names one stage of the import pipeline. A run moves strictly forward;
// a retry is a fresh run, never a resumed one.
type State string

const (
	StateIdle                 State = "idle"
	StateValidatingKey        State = "validating_key"
	StateCheckingDuplicate    State = "checking_duplicate"
	StateFetchingRemote       State = "fetching_remote"
	StateTransforming         State = "transforming"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StatePersisting           State = "persisting"
	StateDone                 State = "done"
	StateFailed               State = "failed"
	StateCancelled            State = "cancelled"
)

// progress is the caller-facing text for each stage.
var progress = map[State]string{
	StateValidatingKey:        "validating access key",
	StateCheckingDuplicate:    "checking for a previous import",
	StateFetchingRemote:       "fetching receipt data",
	StateTransforming:         "processing receipt data",
	StateAwaitingConfirmation: "awaiting confirmation",
	StatePersisting:           "saving receipt",
	StateDone:                 "receipt imported",
	StateCancelled:            "import discarded",
}
