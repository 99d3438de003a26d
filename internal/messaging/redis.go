package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"driver-controls/internal/controls"
	"driver-controls/internal/event"
	"driver-controls/internal/logger"
)

const (
	// StateHash holds the last transmitted value of every field.
	StateHash = "controls"
	// StateChannel announces which field of StateHash changed.
	StateChannel = "controls"
	// InputKey is the list remote clients LPUSH named events onto.
	InputKey = "controls:input"
	// FaultSet holds the currently active fault codes.
	FaultSet = "controls:fault"
	// FaultStream receives fault present/absent records.
	FaultStream = "events:faults"

	faultStreamMaxLen = 1000
	pollTimeout       = 5 * time.Second
)

// Raiser queues events. *event.Queue implements it.
type Raiser interface {
	Raise(id event.ID, data uint16) error
}

type RedisClient struct {
	client   *redis.Client
	logger   *logger.Logger
	instance string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisClient(host string, port, db int, l *logger.Logger) *RedisClient {
	return NewRedisClientWithOptions(&redis.Options{
		Addr:                  fmt.Sprintf("%s:%d", host, port),
		DB:                    db,
		ContextTimeoutEnabled: true,
	}, l)
}

func NewRedisClientWithOptions(opts *redis.Options, l *logger.Logger) *RedisClient {
	if l == nil {
		l = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(opts),
		logger: l.WithTag("redis"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetInstanceID tags fault records with the reporting instance.
func (r *RedisClient) SetInstanceID(id string) {
	r.instance = id
}

func (r *RedisClient) faultRecord(values map[string]interface{}) map[string]interface{} {
	values["group"] = StateHash
	values["ts"] = time.Now().Unix()
	if r.instance != "" {
		values["instance"] = r.instance
	}
	return values
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Errorf("Redis connection failed: %v", err)
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the remote input listener. Commands are raised on
// raiser.
func (r *RedisClient) StartListening(raiser Raiser) error {
	if raiser == nil {
		return errors.New("nil raiser")
	}
	r.logger.Infof("Starting Redis listeners")

	r.wg.Add(1)
	go r.listCommandListener(InputKey, func(value string) error {
		return r.handleInputCommand(raiser, value)
	})
	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
		}

		// A bounded BRPOP lets the loop observe cancellation.
		result, err := r.client.BRPop(r.ctx, pollTimeout, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || r.ctx.Err() != nil {
				r.logger.Infof("Context cancelled, exiting %s listener", key)
				return
			}
			r.logger.Warnf("Error reading from %s list: %v", key, err)
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// BRPOP returns [key, value]
		if len(result) < 2 {
			continue
		}
		value := result[1]
		r.logger.Debugf("Received command from %s: %s", key, value)
		if err := handler(value); err != nil {
			r.logger.Warnf("Error handling %s command: %v", key, err)
		}
	}
}

// ParseCommand parses "name" or "name:data" into an event.
func ParseCommand(value string) (event.ID, uint16, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(value), ":")
	id, ok := controls.LookupEvent(name)
	if !ok {
		return 0, 0, fmt.Errorf("unknown event: %q", name)
	}
	if !hasArg {
		return id, 0, nil
	}
	data, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid data for %s: %w", name, err)
	}
	return id, uint16(data), nil
}

func (r *RedisClient) handleInputCommand(raiser Raiser, value string) error {
	id, data, err := ParseCommand(value)
	if err != nil {
		return err
	}
	return raiser.Raise(id, data)
}

// publishHashSet atomically updates a hash field and publishes a notification
func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// Transmit stores a control output and announces it.
func (r *RedisClient) Transmit(msg controls.Message) error {
	if err := r.publishHashSet(StateHash, msg.Field, msg.Value, StateChannel, msg.Field); err != nil {
		r.logger.Warnf("Failed to transmit %s=%s: %v", msg.Field, msg.Value, err)
		return err
	}
	r.logger.Debugf("Transmitted %s=%s", msg.Field, msg.Value)
	return nil
}

// GetField reads back a transmitted value; empty when never set.
func (r *RedisClient) GetField(field string) (string, error) {
	value, err := r.client.HGet(r.ctx, StateHash, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get field %s: %w", field, err)
	}
	return value, nil
}

// ReportFaultPresent reports a fault as present to Redis
func (r *RedisClient) ReportFaultPresent(code int, description string) error {
	r.logger.Infof("Reporting fault present: code=%d, description=%s", code, description)

	pipe := r.client.Pipeline()
	pipe.SAdd(r.ctx, FaultSet, code)
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: FaultStream,
		MaxLen: faultStreamMaxLen,
		Values: r.faultRecord(map[string]interface{}{
			"code":        code,
			"description": description,
		}),
	})
	pipe.Publish(r.ctx, StateChannel, "fault")

	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Warnf("Failed to report fault present: %v", err)
		return err
	}
	return nil
}

// ReportFaultAbsent reports a fault as cleared. The stream records the
// negated code.
func (r *RedisClient) ReportFaultAbsent(code int) error {
	r.logger.Infof("Reporting fault absent: code=%d", code)

	pipe := r.client.Pipeline()
	pipe.SRem(r.ctx, FaultSet, code)
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: FaultStream,
		MaxLen: faultStreamMaxLen,
		Values: r.faultRecord(map[string]interface{}{
			"code": -code,
		}),
	})
	pipe.Publish(r.ctx, StateChannel, "fault")

	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Warnf("Failed to report fault absent: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(pollTimeout):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
