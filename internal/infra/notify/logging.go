package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/infra/logger"
)

// LoggingNotifier records token issuance without delivering anything.
// It stands in when no delivery channel is configured, which is the
// common case when codes are handed out on printed slips at the polling
// station. The code itself is never logged.
type LoggingNotifier struct {
	logger *zap.Logger
}

func NewLoggingNotifier(log *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: log}
}

func (n *LoggingNotifier) NotifyTokenIssued(_ context.Context, voter domain.Voter, _ string) error {
	fields := []zap.Field{
		zap.String("voter_id", voter.ID),
		zap.String("student_id", logger.MaskStudentID(voter.StudentIDForDisplay())),
	}
	if voter.Email != nil {
		fields = append(fields, zap.String("email", logger.MaskEmail(*voter.Email)))
	}
	if voter.Phone != nil {
		fields = append(fields, zap.String("phone", logger.MaskPhone(*voter.Phone)))
	}

	n.logger.Info("voting token issued", fields...)
	return nil
}

var _ port.Notifier = (*LoggingNotifier)(nil)
