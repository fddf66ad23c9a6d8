// Package testingx provides fakes and assertions shared by orchid tests.
//
// # Features
//
//   - MockLogger with in-memory capture that keeps fields attached through With
//   - FakeResource with scripted health and close outcomes and call counters
//   - RecordingRecorder capturing every obsx.Recorder call
//   - Assertions for core/errors codes and faultx kinds
//
// # Layer
//
// testingx is an auxiliary module for tests only.
package testingx
