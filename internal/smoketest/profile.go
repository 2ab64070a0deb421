package smoketest

import "uplinkhub/pkg/protocol"

// ExitConvention is how a failed check is surfaced to the operator
type ExitConvention int

const (
	// ReportFailure catches the failure and reports it as a false result
	ReportFailure ExitConvention = iota
	// AbortOnFailure prints the failure and aborts the run with a non-zero exit
	AbortOnFailure
)

func (c ExitConvention) String() string {
	if c == AbortOnFailure {
		return "abort"
	}
	return "report"
}

// Profile parameterizes one smoke test run
type Profile struct {
	Name       string
	Procedure  string
	Convention ExitConvention
	Verbose    bool // print every result field, not just the message
}

var (
	// ConfirmProfile: connect, call test_uplink_connection, print the message
	ConfirmProfile = Profile{
		Name:       "confirm-uplink",
		Procedure:  protocol.ProcTestUplinkConnection,
		Convention: ReportFailure,
	}
	// TestProfile: connect, call the smoke test module, print every field
	TestProfile = Profile{
		Name:       "test-uplink",
		Procedure:  protocol.ProcSmokeTestModule,
		Convention: AbortOnFailure,
		Verbose:    true,
	}
)

// WithProcedure returns a copy of p aimed at another remote procedure
func (p Profile) WithProcedure(procedure string) Profile {
	p.Procedure = procedure
	return p
}
