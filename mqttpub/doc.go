// Package mqttpub publishes eBUS bus events to an MQTT broker.
//
// Telegram events go to <prefix>telegram/<src>/<dest>/<service> with addresses and service in
// lower case hex; the remaining outcomes go to <prefix>status. Payloads are JSON objects.
//
//	pub, _ := mqttpub.New("mqtt://broker:1883/home/ebus/")
//	_ = pub.Connect(5 * time.Second)
//	b, _ := bus.New(p, bus.WithPublisher(pub))
package mqttpub
