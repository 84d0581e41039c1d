package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision purposes, avoiding the need for
// manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives stored records destined for one live connection.
// Consume must honor the context deadline: a slow or stuck consumer is the
// sink's own problem and must never block the ingest pipelines.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks which connections are currently joined to which rooms.
// Membership is the only shared mutable state in the whole relay.
type IRegistry interface {
	Register(connID string, sink EventSink)
	Join(connID string, roomID domain.RoomID)
	Leave(connID string, roomID domain.RoomID)
	Disconnect(connID string)
	SinksForRoom(roomID domain.RoomID) []EventSink
}
