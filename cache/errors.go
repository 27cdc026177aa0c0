package cache

import (
	"errors"

	"github.com/IvanBrykalov/ringcache/ring"
)

var (
	// ErrNoNodesAvailable is returned by Set/Get when membership is empty.
	ErrNoNodesAvailable = ring.ErrNoNodes
	// ErrDuplicateNode is returned by AddNode for a node that is already a member.
	ErrDuplicateNode = ring.ErrDuplicateNode
	// ErrUnknownNode is returned by RemoveNode for a node that is not a member.
	ErrUnknownNode = ring.ErrUnknownNode
	// ErrKeyNotFound is a normal miss.
	ErrKeyNotFound = errors.New("cache: key not found")
	// ErrMigrationTransport wraps a Transport failure that persisted through
	// all retries for one entry. Redistribution continues with other entries.
	ErrMigrationTransport = errors.New("cache: migration transport failure")
	// ErrNoLoader is returned by GetOrLoad when no Loader was configured.
	ErrNoLoader = errors.New("cache: no Loader provided")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("cache: closed")
)
