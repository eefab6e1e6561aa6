package interfaces

import "backtest-engine/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defining the interface for sharing session state with
// external systems (Server/Push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// -----------------------------------------------------------------------------
	// Broadcast pushes a tick snapshot to external listeners.
	Broadcast(snapshot models.MSessionSnapshot)

	// -----------------------------------------------------------------------------
	// UpdateState replaces the internal state without broadcasting.
	UpdateState(snapshot models.MSessionSnapshot)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}

// -----------------------------------------------------------------------------
// ISessionControl is what the control API needs from the coordinator.
// -----------------------------------------------------------------------------

type ISessionControl interface {

	// Pause freezes simulated time. Returns false (no state change) when the
	// session is live or not running.
	Pause() bool

	// -----------------------------------------------------------------------------

	// Resume unfreezes simulated time. Returns false unless paused.
	Resume() bool

	// -----------------------------------------------------------------------------

	// State returns "STOPPED", "RUNNING" or "PAUSED".
	State() string

	// -----------------------------------------------------------------------------

	// Stop ends the session irreversibly and unblocks every waiting stage.
	Stop()

	// -----------------------------------------------------------------------------

	// Snapshot returns the current session snapshot.
	Snapshot() models.MSessionSnapshot
}
