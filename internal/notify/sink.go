package notify

import (
	"context"

	"github.com/safar/order-engine/internal/config"
	"go.uber.org/zap"
)

// NewSink builds the sink selected by configuration.
func NewSink(ctx context.Context, cfg config.NotifyConfig, logger *zap.Logger) (Sink, error) {
	switch cfg.Sink {
	case config.SinkSMTP:
		sender, err := NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.FromEmail)
		if err != nil {
			return nil, err
		}
		return NewEmailSink(sender), nil
	case config.SinkSNS:
		client, err := NewSNSClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return NewSNSSink(client, cfg.SNSTopicARN), nil
	case config.SinkKafka:
		return NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return NewLogSink(logger), nil
	}
}
