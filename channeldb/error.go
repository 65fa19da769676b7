package channeldb

import "fmt"

var (
	// ErrNoExists is returned when the database file does not exist on
	// disk and no create-if-missing option was set.
	ErrNoExists = fmt.Errorf("channel db has not yet been created")

	// ErrNoActiveChannels is returned by FetchAllChannels when no open
	// channel is recorded for any remote node.
	ErrNoActiveChannels = fmt.Errorf("no active channels exist")

	// ErrChannelNotFound is returned when a lookup by funding outpoint
	// finds no matching entry in a node's channel bucket.
	ErrChannelNotFound = fmt.Errorf("channel not found")

	// ErrNoChannelsFound is returned when the root channel bucket itself
	// has not yet been created, i.e. no channel has ever been opened.
	ErrNoChannelsFound = fmt.Errorf("no channel bucket has been created")
)
