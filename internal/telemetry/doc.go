// Package telemetry owns the gateway's in-memory state: the bounded history
// of sensor readings and the current status snapshot.
//
// A single Store guards both behind one sync.RWMutex. Writers (bus ingestion,
// command relay merges, Clear) take the write lock; every read takes the read
// lock and copies out, so callers always see a consistent single-instant view
// and never observe a half-applied merge.
//
// # Readings
//
// Each accepted sensor-data message becomes an immutable Reading carrying the
// device fields plus a server-assigned UTC timestamp and a sequence number.
// Sequence numbers start at 1 and are never reused, even after Clear.
//
// # Status
//
// The StatusSnapshot starts from the device defaults (moisture threshold 40,
// lights 06:00-18:00, automatic watering and lighting on) and is merged field
// by field: keys present in an update overwrite, absent keys are untouched.
//
// Usage:
//
//	store, err := telemetry.NewStore(telemetry.Options{Capacity: 1000})
//	reading, status, err := store.IngestSensorData(payload)
//	stats, err := store.Statistics()
package telemetry
