// Package events provides types and interfaces for publishing task lifecycle
// events.
//
// The task controller emits an event for every terminal transition and every
// notification offer. Handlers subscribe through an EventEmitter, so the CLI,
// metrics or any other observer can react without the controller knowing
// about them.
//
// The primary components are:
// - TaskEvent: a single lifecycle event with a JSON payload
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
