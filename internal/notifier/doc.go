// Package notifier delivers new-event messages.
//
// A Sender delivers one message to one recipient. Twilio SMS is the deployed
// channel; Telegram, Twitter and a dry-run writer are also available. SendAll
// fans a batch of events out to a Sender, attempting every event even when
// some sends fail.
package notifier
