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

package openflow

import (
	"encoding/binary"
	"net"
)

// DatapathIDString formats a datapath ID the way switches print it, as eight
// colon separated hex bytes.
func DatapathIDString(id uint64) string {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return net.HardwareAddr(b).String()
}

func netIP(b []byte) string {
	if len(b) != net.IPv4len && len(b) != net.IPv6len {
		return "?"
	}
	return net.IP(b).String()
}
