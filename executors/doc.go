// Package executors provides the built-in job variants of a messaging
// client: sending messages, polling for incoming ones, and moving
// attachments. Each variant is a typed job.Definition constructed by a
// New* function and registered by the application at configuration time:
//
//	reg := job.NewRegistry()
//	job.RegisterDefinition(reg, executors.NewSend())
//	job.RegisterDefinition(reg, executors.NewPoll(inbox))
//
// Executors are pure functions of (details, deps): all collaborators
// arrive through job.Deps or the constructor, so every variant is
// testable with fakes and an httptest server.
package executors
