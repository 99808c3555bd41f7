package ports

import (
	"context"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

// SwitchService defines the high-level operations offered to the outer layer.
// Each call is a complete connect, act, disconnect cycle.
type SwitchService interface {
	FetchAll(ctx context.Context, params entities.ConnectionParameters) entities.OperationResult
	Apply(ctx context.Context, params entities.ConnectionParameters, desired entities.DeviceState) entities.OperationResult
	SaveConfig(ctx context.Context, params entities.ConnectionParameters) entities.OperationResult
	DownloadConfig(ctx context.Context, params entities.ConnectionParameters, hostname string) entities.OperationResult
	TFTPUpload(ctx context.Context, params entities.ConnectionParameters, server, hostname string) entities.OperationResult
}
