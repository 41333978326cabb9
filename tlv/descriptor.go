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

package tlv

// Descriptor is the static shape of one field: its fixed value size and
// whether a mask may follow the value.
type Descriptor struct {
	Class    uint16
	Field    uint8
	Name     string
	Size     int
	Maskable bool
}

// Descriptors indexes field descriptors by class and field.
type Descriptors map[uint32]Descriptor

func descriptorKey(class uint16, field uint8) uint32 {
	return uint32(class)<<16 | uint32(field)
}

func NewDescriptors(descs ...Descriptor) Descriptors {
	d := make(Descriptors, len(descs))
	for _, desc := range descs {
		d[descriptorKey(desc.Class, desc.Field)] = desc
	}
	return d
}

// Lookup is safe on a nil Descriptors.
func (d Descriptors) Lookup(class uint16, field uint8) (Descriptor, bool) {
	desc, ok := d[descriptorKey(class, field)]
	return desc, ok
}

// All returns the descriptors in no particular order.
func (d Descriptors) All() []Descriptor {
	all := make([]Descriptor, 0, len(d))
	for _, desc := range d {
		all = append(all, desc)
	}
	return all
}
