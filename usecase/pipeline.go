package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain"
	"github.com/leauyn/openavatarchat/internal/session"
)

// Pipeline chains handlers in order. Every envelope a stage emits is
// surfaced to the sink and also fed to the later stages as input, so the
// recognition stage's text turns drive the response stage without the stages
// knowing about each other.
type Pipeline struct {
	stages []Handler
	logger *zap.Logger
}

// NewPipeline composes stages into a pipeline.
func NewPipeline(logger *zap.Logger, stages ...Handler) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Configure configures every stage.
func (p *Pipeline) Configure() error {
	for _, stage := range p.stages {
		if err := stage.Configure(); err != nil {
			return err
		}
	}
	return nil
}

// CreateSession creates the session on every stage. On failure the already
// created stages are torn down.
func (p *Pipeline) CreateSession(ctx context.Context, sess *session.Context) error {
	for i, stage := range p.stages {
		if err := stage.CreateSession(ctx, sess); err != nil {
			for j := i - 1; j >= 0; j-- {
				p.stages[j].DestroySession(sess)
			}
			return err
		}
	}
	return nil
}

// DestroySession tears the session down on every stage.
func (p *Pipeline) DestroySession(sess *session.Context) {
	for _, stage := range p.stages {
		stage.DestroySession(sess)
	}
}

// Feed runs one inbound unit through the pipeline. The unit itself is
// offered to every stage; stages ignore channels they do not consume.
func (p *Pipeline) Feed(ctx context.Context, sess *session.Context, data domain.ChatData, sink EmitFunc) error {
	return p.feed(ctx, sess, 0, data, sink)
}

func (p *Pipeline) feed(ctx context.Context, sess *session.Context, idx int, data domain.ChatData, sink EmitFunc) error {
	if idx >= len(p.stages) {
		return nil
	}
	emit := func(env domain.Envelope) {
		sink(env)
		if err := p.feed(ctx, sess, idx+1, chatDataFromEnvelope(env), sink); err != nil {
			p.logger.Error("downstream stage failed", zap.Error(err))
		}
	}
	if err := p.stages[idx].Handle(ctx, sess, data, emit); err != nil {
		return err
	}
	return p.feed(ctx, sess, idx+1, data, sink)
}

// chatDataFromEnvelope converts an emitted envelope into the downstream
// input unit.
func chatDataFromEnvelope(env domain.Envelope) domain.ChatData {
	return domain.ChatData{
		Type:      env.Type,
		Text:      env.Payload,
		TurnID:    env.TurnID,
		EndOfTurn: env.EndOfTurn,
	}
}
