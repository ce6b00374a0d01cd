/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package events

// Event models an event delivered to the listeners of its topic
type Event interface {
	Topic() string
	Message() interface{}
}

// Listener is notified of the events published on the topics it subscribed to
type Listener interface {
	OnReceive(event Event)
}

type Publisher interface {
	Publish(event Event)
}

type Subscriber interface {
	Subscribe(topic string, receiver Listener)
	Unsubscribe(topic string, receiver Listener)
}

type EventSystem interface {
	Publisher
	Subscriber
}
