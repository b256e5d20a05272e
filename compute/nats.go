package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig names the subjects the remote compute workers listen and
// report on.
type NATSConfig struct {
	URL                    string
	NormalizeSubject       string
	TransformSubject       string
	NormalizeResultSubject string
	TransformResultSubject string
}

// NATSDispatcher publishes stage requests to NATS and feeds result
// messages back into the bound sink. The request/result documents are
// plain JSON; the workers' internals are not this core's concern.
type NATSDispatcher struct {
	nc  *nats.Conn
	cfg NATSConfig

	mu         sync.Mutex
	sink       ResultSink
	dispatched map[string]struct{}

	subs []*nats.Subscription
}

// DialNATS connects to the NATS server and subscribes to the result
// subjects. Results arriving before Bind are dropped with no sink to
// deliver to.
func DialNATS(cfg NATSConfig, opts ...nats.Option) (*NATSDispatcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	base := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
	}
	nc, err := nats.Connect(cfg.URL, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	d := &NATSDispatcher{
		nc:         nc,
		cfg:        cfg,
		dispatched: make(map[string]struct{}),
	}

	normSub, err := nc.Subscribe(cfg.NormalizeResultSubject, d.onNormalizeResult)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.NormalizeResultSubject, err)
	}
	transSub, err := nc.Subscribe(cfg.TransformResultSubject, d.onTransformResult)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.TransformResultSubject, err)
	}
	d.subs = append(d.subs, normSub, transSub)

	return d, nil
}

// Bind connects the result sink.
func (d *NATSDispatcher) Bind(sink ResultSink) {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
}

// Close drains the connection.
func (d *NATSDispatcher) Close() {
	if d.nc != nil {
		_ = d.nc.Drain()
	}
}

// DispatchNormalize publishes a normalize request.
func (d *NATSDispatcher) DispatchNormalize(ctx context.Context, req NormalizeRequest) error {
	return d.publish(ctx, req.JobID, StageNormalize, d.cfg.NormalizeSubject, req)
}

// DispatchTransform publishes a transform request.
func (d *NATSDispatcher) DispatchTransform(ctx context.Context, req TransformRequest) error {
	return d.publish(ctx, req.JobID, StageTransform, d.cfg.TransformSubject, req)
}

func (d *NATSDispatcher) publish(ctx context.Context, jobID, stage, subject string, req any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.sink == nil {
		d.mu.Unlock()
		return errors.New("nats dispatcher has no bound sink")
	}
	key := jobID + "/" + stage
	if _, seen := d.dispatched[key]; seen {
		d.mu.Unlock()
		return nil
	}
	d.dispatched[key] = struct{}{}
	d.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		d.forget(key)
		return fmt.Errorf("marshal %s request: %w", stage, err)
	}
	if err := d.nc.Publish(subject, data); err != nil {
		// Failed publishes do not consume the dispatch slot, so a
		// retried dispatch can try again.
		d.forget(key)
		return fmt.Errorf("publish %s request: %w", stage, err)
	}
	return nil
}

func (d *NATSDispatcher) forget(key string) {
	d.mu.Lock()
	delete(d.dispatched, key)
	d.mu.Unlock()
}

func (d *NATSDispatcher) onNormalizeResult(msg *nats.Msg) {
	sink := d.currentSink()
	if sink == nil {
		return
	}

	var res NormalizeResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		return
	}
	if res.Error != "" {
		sink.StageFailed(res.JobID, StageNormalize, errors.New(res.Error))
		return
	}
	sink.NormalizeDone(res)
}

func (d *NATSDispatcher) onTransformResult(msg *nats.Msg) {
	sink := d.currentSink()
	if sink == nil {
		return
	}

	var res TransformResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		return
	}
	if res.Error != "" {
		sink.StageFailed(res.JobID, StageTransform, errors.New(res.Error))
		return
	}
	sink.TransformDone(res)
}

func (d *NATSDispatcher) currentSink() ResultSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink
}
