package bridge

import (
	"context"
	"time"

	"uplinkhub/pkg/models"
	"uplinkhub/pkg/protocol"
)

const diagnosticsModule = "server_shared.utilities"

// RegisterDiagnostics adds the uplink verification callables.
// now is injectable so tests can pin the timestamp.
func RegisterDiagnostics(r *Registry, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}

	diagnostic := func(message, module string) Callable {
		return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			return (&models.ConnectionResult{
				Status:       models.StatusSuccess,
				Message:      message,
				Timestamp:    now().Format(time.RFC3339Nano),
				ServerModule: module,
			}).Map(), nil
		}
	}

	if err := r.Register(protocol.ProcTestUplinkConnection,
		diagnostic("Uplink connection test successful", diagnosticsModule)); err != nil {
		return err
	}
	if err := r.Register(protocol.ProcTestUplinkConnectionV2,
		diagnostic("Uplink v2 is working!", diagnosticsModule)); err != nil {
		return err
	}
	return r.Register(protocol.ProcSmokeTestModule,
		diagnostic("Uplink smoke test passed", protocol.ProcSmokeTestModule))
}
