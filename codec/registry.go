/*
Licensed to the Apache Software Foundation (ASF) under one
or more contributor license agreements.  See the NOTICE file
distributed with this work for additional information
regarding copyright ownership.  The ASF licenses this file
to you under the Apache License, Version 2.0 (the
"License"); you may not use this file except in compliance
with the License.  You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing,
software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
KIND, either express or implied.  See the License for the
specific language governing permissions and limitations
under the License.
*/

package codec

import (
	"fmt"
	"sort"
	"sync"
)

type Options struct {
	// AllowOverride replaces an existing codec on registration instead of
	// rejecting the key with ErrDuplicateKey.
	AllowOverride bool
}

// Registrar installs a family of codecs into a registry.
type Registrar func(r *Registry) error

// Registry maps keys to serializers and deserializers. It is safe for
// concurrent use; codecs may be registered while connections are decoding.
type Registry struct {
	mu sync.RWMutex

	opts          Options
	serializers   map[Key]Serializer
	deserializers map[Key]Deserializer
}

func New(opts Options) *Registry {
	return &Registry{
		opts:          opts,
		serializers:   make(map[Key]Serializer),
		deserializers: make(map[Key]Deserializer),
	}
}

// NewRegistry builds a registry and runs registrars in order.
func NewRegistry(opts Options, registrars ...Registrar) (*Registry, error) {
	r := New(opts)
	for _, register := range registrars {
		if err := register(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) RegisterSerializer(key Key, s Serializer) error {
	if s == nil {
		return fmt.Errorf("%w: serializer for %s", ErrNilCodec, key)
	}
	return r.register(key, s, nil)
}

func (r *Registry) RegisterDeserializer(key Key, d Deserializer) error {
	if d == nil {
		return fmt.Errorf("%w: deserializer for %s", ErrNilCodec, key)
	}
	return r.register(key, nil, d)
}

// register installs whichever of s and d is non-nil. Either both succeed or
// neither does.
func (r *Registry) register(key Key, s Serializer, d Deserializer) error {
	if s == nil && d == nil {
		return fmt.Errorf("%w: %s", ErrNilCodec, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.opts.AllowOverride {
		if _, exists := r.serializers[key]; exists && s != nil {
			return fmt.Errorf("%w: serializer for %s", ErrDuplicateKey, key)
		}
		if _, exists := r.deserializers[key]; exists && d != nil {
			return fmt.Errorf("%w: deserializer for %s", ErrDuplicateKey, key)
		}
	}

	if s != nil {
		r.serializers[key] = s
	}
	if d != nil {
		r.deserializers[key] = d
	}
	return nil
}

// UnregisterSerializer reports whether a serializer was removed.
func (r *Registry) UnregisterSerializer(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.serializers[key]
	delete(r.serializers, key)
	return exists
}

func (r *Registry) UnregisterDeserializer(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.deserializers[key]
	delete(r.deserializers, key)
	return exists
}

func (r *Registry) Serializer(key Key) (Serializer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.serializers[key]
	if !ok {
		return nil, fmt.Errorf("%w: serializer for %s", ErrMissingCodec, key)
	}
	return s, nil
}

func (r *Registry) Deserializer(key Key) (Deserializer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.deserializers[key]
	if !ok {
		return nil, fmt.Errorf("%w: deserializer for %s", ErrMissingCodec, key)
	}
	return d, nil
}

// Versions lists, in ascending order, the protocol versions that have at
// least one message deserializer.
func (r *Registry) Versions() []uint8 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uint8]struct{})
	for key := range r.deserializers {
		if key.Domain == DomainMessage {
			seen[key.Version] = struct{}{}
		}
	}

	versions := make([]uint8, 0, len(seen))
	for v := range seen {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}

// Dialect scopes the registry to one protocol version.
func (r *Registry) Dialect(version uint8) Dialect {
	return Dialect{reg: r, version: version}
}
