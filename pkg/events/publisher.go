/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package events publishes fleet activity as CloudEvents on NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/dronefleet/pkg/logger"
	"github.com/carverauto/dronefleet/pkg/models"
)

const (
	subjectDeviceDiscovered = "device.discovered"
	subjectTaskCompleted    = "task.completed"
)

// Publisher is what the fleet controller reports to.
type Publisher interface {
	PublishDeviceDiscovered(ctx context.Context, device models.DeviceInfo) error
	PublishTaskCompleted(ctx context.Context, data models.TaskCompletedEventData) error
	Close() error
}

// JetStreamPublisher is the subset of jetstream.JetStream the publisher uses.
type JetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher publishes CloudEvents to a JetStream stream.
type EventPublisher struct {
	js     JetStreamPublisher
	nc     *nats.Conn
	source string
	prefix string
	logger logger.Logger
}

// NewEventPublisher creates a publisher over an existing JetStream context.
func NewEventPublisher(js JetStreamPublisher, source, subjectPrefix string, log logger.Logger) *EventPublisher {
	if subjectPrefix == "" {
		subjectPrefix = models.DefaultEventSubjectPrefix
	}

	return &EventPublisher{
		js:     js,
		source: source,
		prefix: strings.TrimSuffix(subjectPrefix, "."),
		logger: log,
	}
}

// Connect dials NATS, makes sure the stream exists and returns a publisher
// that owns the connection.
func Connect(ctx context.Context, cfg *models.EventsConfig, source string, log logger.Logger) (*EventPublisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrEventsDisabled
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(source),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := newJetStream(nc, cfg.Domain)
	if err != nil {
		nc.Close()

		return nil, err
	}

	p := NewEventPublisher(js, source, cfg.SubjectPrefix, log)
	p.nc = nc

	if err := ensureStream(ctx, js, cfg.StreamName, p.prefix+".>"); err != nil {
		nc.Close()

		return nil, err
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("stream", cfg.StreamName).
		Str("subject_prefix", p.prefix).
		Msg("Publishing fleet events")

	return p, nil
}

func newJetStream(nc *nats.Conn, domain string) (jetstream.JetStream, error) {
	if domain != "" {
		js, err := jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}

		return js, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return js, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, name, subject string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to get stream %s: %w", name, err)
		}

		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stream info %s: %w", name, err)
	}

	subjects := ensureSubjectList(append([]string(nil), info.Config.Subjects...), subject)
	if len(subjects) == len(info.Config.Subjects) {
		return nil
	}

	cfg := info.Config
	cfg.Subjects = subjects

	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add subject %s to stream %s: %w", subject, name, err)
	}

	return nil
}

// PublishDeviceDiscovered announces a newly registered device.
func (p *EventPublisher) PublishDeviceDiscovered(ctx context.Context, device models.DeviceInfo) error {
	data := models.DeviceDiscoveredEventData{
		Device:    device,
		Timestamp: time.Now().UTC(),
	}

	return p.publish(ctx, models.EventTypeDeviceDiscovered, subjectDeviceDiscovered, data.Timestamp, data)
}

// PublishTaskCompleted announces a completed task with its per-device results.
func (p *EventPublisher) PublishTaskCompleted(ctx context.Context, data models.TaskCompletedEventData) error {
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now().UTC()
	}

	return p.publish(ctx, models.EventTypeTaskCompleted, subjectTaskCompleted, data.Timestamp, data)
}

func (p *EventPublisher) publish(ctx context.Context, eventType, suffix string, ts time.Time, data interface{}) error {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          p.source,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         p.prefix + "." + suffix,
		Time:            &ts,
		Data:            data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", suffix, err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, payload)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", suffix, err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published event")

	return nil
}

// Close drains the NATS connection if the publisher owns one.
func (p *EventPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	return p.nc.Drain()
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishDeviceDiscovered(context.Context, models.DeviceInfo) error {
	return nil
}

func (NoopPublisher) PublishTaskCompleted(context.Context, models.TaskCompletedEventData) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}

func ensureSubjectList(subjects []string, subject string) []string {
	for _, s := range subjects {
		if matchesSubject(s, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern covers subject using NATS wildcard
// rules. A pattern equal to subject matches, including wildcard subjects.
func matchesSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, tok := range pTokens {
		if tok == ">" {
			return len(sTokens) > i
		}

		if i >= len(sTokens) {
			return false
		}

		if tok != "*" && tok != sTokens[i] {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
