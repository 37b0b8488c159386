// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package amqp implements job.Scheduler by publishing job
// specifications to a RabbitMQ queue, from which a dispatcher running
// near the cluster submits them. Each submission is assigned a fresh
// UUID handle at publish time.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/retry"
	"github.com/grailbio/bigbatch/job"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultDialPolicy is the retry policy used to connect to the broker.
var DefaultDialPolicy = retry.MaxRetries(retry.Backoff(time.Second, 30*time.Second, 2), 8)

// A Message is the body of a published submission.
type Message struct {
	Handle job.Handle
	Spec   job.Spec
}

// Publisher is the subset of *amqp.Channel used by the scheduler.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Scheduler publishes submissions to a queue.
type Scheduler struct {
	Publisher Publisher
	// Queue is the routing key (queue name) on the default exchange.
	Queue string
}

// Submit implements job.Scheduler. A publish failure is returned with
// kind errors.Unavailable; it is not retried.
func (s *Scheduler) Submit(ctx context.Context, spec job.Spec) (job.Handle, error) {
	if err := job.ValidateDependencies(spec.Dependencies); err != nil {
		return "", err
	}
	msg := Message{Handle: job.Handle(uuid.New().String()), Spec: spec}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", errors.E(errors.Invalid, fmt.Sprintf("encode %s", spec.Name), err)
	}
	err = s.Publisher.PublishWithContext(ctx, "", s.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    string(msg.Handle),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return "", errors.E(errors.Unavailable, fmt.Sprintf("publish %s to %s", spec.Name, s.Queue), err)
	}
	log.Debug.Printf("amqp: published %s as %s to %s", spec.Name, msg.Handle, s.Queue)
	return msg.Handle, nil
}

// Decode decodes a delivered submission.
func Decode(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, errors.E(errors.Invalid, "decode submission", err)
	}
	if msg.Handle == "" {
		return Message{}, errors.E(errors.Invalid, "decode submission: missing handle")
	}
	return msg, nil
}

// Conn is a broker connection with a channel and a declared,
// durable submission queue.
type Conn struct {
	*Scheduler
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to the broker at url and declares queue. Connection
// attempts are retried according to policy.
func Dial(ctx context.Context, url, queue string, policy retry.Policy) (*Conn, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for retries := 0; ; retries++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Error.Printf("amqp: dial %s: %v (attempt %d)", queue, err, retries+1)
		if werr := retry.Wait(ctx, policy, retries); werr != nil {
			return nil, errors.E(errors.Unavailable, fmt.Sprintf("dial broker for queue %s", queue), err)
		}
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.E(errors.Unavailable, "open channel", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.E(errors.Unavailable, fmt.Sprintf("declare queue %s", queue), err)
	}
	return &Conn{
		Scheduler: &Scheduler{Publisher: ch, Queue: queue},
		conn:      conn,
		ch:        ch,
	}, nil
}

// Close closes the channel and the connection.
func (c *Conn) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}
