// Package mqtt connects the agri gateway to the field-device message bus.
//
// This package manages:
//   - Connection to the broker, with backoff-driven initial retries and paho auto-reconnect
//   - Subscriptions that are restored after every reconnect
//   - Publishing with a bounded acknowledgement wait
//   - A retained gateway status document plus Last Will and Testament
//
// # Topics
//
// All topics live under a configurable prefix (default "agri"):
//
//	agri/sensor/data      devices → gateway  sensor readings
//	agri/status           devices → gateway  status documents
//	agri/control/{name}   gateway → devices  pump / light commands
//	agri/config           gateway → devices  configuration updates
//	agri/gateway/status   gateway → all      online/offline (retained, LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().SensorData(), 1,
//	    func(topic string, payload []byte) error {
//	        return ingestor.Handle(topic, payload)
//	    })
package mqtt
