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

package ofp13

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/tlv"
)

// BasicFields describes every OpenFlow basic match field.
var BasicFields = tlv.NewDescriptors(
	basic(FieldInPort, "in_port", 4, false),
	basic(FieldInPhyPort, "in_phy_port", 4, false),
	basic(FieldMetadata, "metadata", 8, true),
	basic(FieldEthDst, "eth_dst", 6, true),
	basic(FieldEthSrc, "eth_src", 6, true),
	basic(FieldEthType, "eth_type", 2, false),
	basic(FieldVlanVID, "vlan_vid", 2, true),
	basic(FieldVlanPCP, "vlan_pcp", 1, false),
	basic(FieldIPDSCP, "ip_dscp", 1, false),
	basic(FieldIPECN, "ip_ecn", 1, false),
	basic(FieldIPProto, "ip_proto", 1, false),
	basic(FieldIPv4Src, "ipv4_src", 4, true),
	basic(FieldIPv4Dst, "ipv4_dst", 4, true),
	basic(FieldTCPSrc, "tcp_src", 2, false),
	basic(FieldTCPDst, "tcp_dst", 2, false),
	basic(FieldUDPSrc, "udp_src", 2, false),
	basic(FieldUDPDst, "udp_dst", 2, false),
	basic(FieldSCTPSrc, "sctp_src", 2, false),
	basic(FieldSCTPDst, "sctp_dst", 2, false),
	basic(FieldICMPv4Type, "icmpv4_type", 1, false),
	basic(FieldICMPv4Code, "icmpv4_code", 1, false),
	basic(FieldARPOp, "arp_op", 2, false),
	basic(FieldARPSpa, "arp_spa", 4, true),
	basic(FieldARPTpa, "arp_tpa", 4, true),
	basic(FieldARPSha, "arp_sha", 6, true),
	basic(FieldARPTha, "arp_tha", 6, true),
	basic(FieldIPv6Src, "ipv6_src", 16, true),
	basic(FieldIPv6Dst, "ipv6_dst", 16, true),
	basic(FieldIPv6FLabel, "ipv6_flabel", 4, true),
	basic(FieldICMPv6Type, "icmpv6_type", 1, false),
	basic(FieldICMPv6Code, "icmpv6_code", 1, false),
	basic(FieldIPv6NDTarget, "ipv6_nd_target", 16, false),
	basic(FieldIPv6NDSLL, "ipv6_nd_sll", 6, false),
	basic(FieldIPv6NDTLL, "ipv6_nd_tll", 6, false),
	basic(FieldMPLSLabel, "mpls_label", 4, false),
	basic(FieldMPLSTC, "mpls_tc", 1, false),
	basic(FieldMPLSBOS, "mpls_bos", 1, false),
	basic(FieldPBBISID, "pbb_isid", 3, true),
	basic(FieldTunnelID, "tunnel_id", 8, true),
	basic(FieldIPv6ExtHdr, "ipv6_exthdr", 2, true),
)

func basic(field uint8, name string, size int, maskable bool) tlv.Descriptor {
	return tlv.Descriptor{Class: OXMClassBasic, Field: field, Name: name, Size: size, Maskable: maskable}
}

// VlanPresent is or'ed into vlan_vid to match tagged packets.
const VlanPresent uint16 = 0x1000

// OXM is one match field of a non-experimenter class.
type OXM struct {
	tlv.Entry
}

func (o *OXM) OXMClass() uint16 {
	return o.Class
}

func (o *OXM) OXMField() uint8 {
	return o.Field
}

// Name is the ovs-ofctl style name of a basic field, or a generic label.
func (o *OXM) Name() string {
	if desc, ok := BasicFields.Lookup(o.Class, o.Field); ok {
		return desc.Name
	}
	return fmt.Sprintf("oxm(%#04x:%d)", o.Class, o.Field)
}

func (o *OXM) Uint8() uint8 {
	if len(o.Value) < 1 {
		return 0
	}
	return o.Value[0]
}

func (o *OXM) Uint16() uint16 {
	if len(o.Value) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(o.Value)
}

func (o *OXM) Uint32() uint32 {
	if len(o.Value) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(o.Value)
}

func (o *OXM) Uint64() uint64 {
	if len(o.Value) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(o.Value)
}

func newBasic(field uint8, value []byte) *OXM {
	return &OXM{tlv.Entry{Class: OXMClassBasic, Field: field, Value: value}}
}

func newBasicMasked(field uint8, value, mask []byte) *OXM {
	return &OXM{tlv.Entry{Class: OXMClassBasic, Field: field, HasMask: true, Value: value, Mask: mask}}
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func ip4(ip net.IP) []byte {
	if v4 := ip.To4(); v4 != nil {
		return append([]byte(nil), v4...)
	}
	return make([]byte, 4)
}

func ip6(ip net.IP) []byte {
	if v6 := ip.To16(); v6 != nil {
		return append([]byte(nil), v6...)
	}
	return make([]byte, 16)
}

func mac(hw net.HardwareAddr) []byte {
	b := make([]byte, 6)
	copy(b, hw)
	return b
}

func NewInPort(port uint32) *OXM {
	return newBasic(FieldInPort, be32(port))
}

func NewMetadata(v uint64) *OXM {
	return newBasic(FieldMetadata, be64(v))
}

func NewMetadataMasked(v, mask uint64) *OXM {
	return newBasicMasked(FieldMetadata, be64(v), be64(mask))
}

func NewEthDst(hw net.HardwareAddr) *OXM {
	return newBasic(FieldEthDst, mac(hw))
}

func NewEthDstMasked(hw, mask net.HardwareAddr) *OXM {
	return newBasicMasked(FieldEthDst, mac(hw), mac(mask))
}

func NewEthSrc(hw net.HardwareAddr) *OXM {
	return newBasic(FieldEthSrc, mac(hw))
}

func NewEthType(ethType uint16) *OXM {
	return newBasic(FieldEthType, be16(ethType))
}

// NewVlanVID matches a tagged packet with the given VLAN id.
func NewVlanVID(vid uint16) *OXM {
	return newBasic(FieldVlanVID, be16(vid|VlanPresent))
}

func NewIPProto(proto uint8) *OXM {
	return newBasic(FieldIPProto, []byte{proto})
}

func NewIPv4Src(ip net.IP) *OXM {
	return newBasic(FieldIPv4Src, ip4(ip))
}

func NewIPv4SrcMasked(ip net.IP, mask net.IPMask) *OXM {
	return newBasicMasked(FieldIPv4Src, ip4(ip), ip4(net.IP(mask)))
}

func NewIPv4Dst(ip net.IP) *OXM {
	return newBasic(FieldIPv4Dst, ip4(ip))
}

func NewIPv4DstMasked(ip net.IP, mask net.IPMask) *OXM {
	return newBasicMasked(FieldIPv4Dst, ip4(ip), ip4(net.IP(mask)))
}

func NewTCPSrc(port uint16) *OXM {
	return newBasic(FieldTCPSrc, be16(port))
}

func NewTCPDst(port uint16) *OXM {
	return newBasic(FieldTCPDst, be16(port))
}

func NewUDPSrc(port uint16) *OXM {
	return newBasic(FieldUDPSrc, be16(port))
}

func NewUDPDst(port uint16) *OXM {
	return newBasic(FieldUDPDst, be16(port))
}

func NewARPOp(op uint16) *OXM {
	return newBasic(FieldARPOp, be16(op))
}

func NewARPSpa(ip net.IP) *OXM {
	return newBasic(FieldARPSpa, ip4(ip))
}

func NewARPTpa(ip net.IP) *OXM {
	return newBasic(FieldARPTpa, ip4(ip))
}

func NewIPv6Src(ip net.IP) *OXM {
	return newBasic(FieldIPv6Src, ip6(ip))
}

func NewIPv6Dst(ip net.IP) *OXM {
	return newBasic(FieldIPv6Dst, ip6(ip))
}

func NewTunnelID(id uint64) *OXM {
	return newBasic(FieldTunnelID, be64(id))
}

func NewTunnelIDMasked(id, mask uint64) *OXM {
	return newBasicMasked(FieldTunnelID, be64(id), be64(mask))
}

// ExperimenterOXM is a match field of the experimenter class. Its payload
// starts with the experimenter id; Data is whatever follows it, mask
// included when HasMask is set.
type ExperimenterOXM struct {
	Field        uint8
	HasMask      bool
	Experimenter uint32
	Data         []byte
}

func (o *ExperimenterOXM) OXMClass() uint16 {
	return OXMClassExperimenter
}

func (o *ExperimenterOXM) OXMField() uint8 {
	return o.Field
}

func (o *ExperimenterOXM) ExperimenterID() uint32 {
	return o.Experimenter
}

var oxmCodec = codec.Codec[*OXM]{
	Len: func(_ codec.Dialect, o *OXM) (int, error) {
		return o.Len(), nil
	},
	Encode: func(_ codec.Dialect, o *OXM, out *bytes.Buffer) error {
		if desc, ok := BasicFields.Lookup(o.Class, o.Field); ok {
			if len(o.Value) != desc.Size {
				return fmt.Errorf("%w: %s has %d bytes, want %d", tlv.ErrFieldSize, desc.Name, len(o.Value), desc.Size)
			}
			if o.HasMask && !desc.Maskable {
				return fmt.Errorf("%w: %s", tlv.ErrNotMaskable, desc.Name)
			}
		}
		return tlv.EncodeEntry(out, o.Entry)
	},
	Decode: func(_ codec.Dialect, data []byte) (*OXM, error) {
		e, _, err := tlv.DecodeEntry(data, BasicFields)
		if err != nil {
			return nil, err
		}
		return &OXM{e}, nil
	},
}

var experimenterOXMCodec = codec.Codec[*ExperimenterOXM]{
	Len: func(_ codec.Dialect, o *ExperimenterOXM) (int, error) {
		return tlv.EntryHeaderLen + 4 + len(o.Data), nil
	},
	Encode: func(_ codec.Dialect, o *ExperimenterOXM, out *bytes.Buffer) error {
		payload := 4 + len(o.Data)
		if payload > 0xff {
			return fmt.Errorf("%w: %d", tlv.ErrPayloadTooLarge, payload)
		}
		var hdr [tlv.EntryHeaderLen + 4]byte
		binary.BigEndian.PutUint16(hdr[0:2], OXMClassExperimenter)
		hdr[2] = tlv.FieldByte(o.Field, o.HasMask)
		hdr[3] = uint8(payload)
		binary.BigEndian.PutUint32(hdr[4:8], o.Experimenter)
		out.Write(hdr[:])
		out.Write(o.Data)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*ExperimenterOXM, error) {
		_, field, hasMask, payload, err := tlv.PeekHeader(data)
		if err != nil {
			return nil, err
		}
		n := tlv.EntryHeaderLen + payload
		if payload < 4 || n > len(data) {
			return nil, fmt.Errorf("%w: experimenter field with payload %d", tlv.ErrTruncatedElement, payload)
		}
		return &ExperimenterOXM{
			Field:        field,
			HasMask:      hasMask,
			Experimenter: binary.BigEndian.Uint32(data[4:8]),
			Data:         append([]byte(nil), data[8:n]...),
		}, nil
	},
}

// RegisterExperimenterOXM installs a raw codec for the given experimenter
// fields.
func RegisterExperimenterOXM(r *codec.Registry, experimenter uint32, fields ...uint8) error {
	for _, field := range fields {
		if err := codec.Register(r, codec.ExperimenterMatchKey(Version, field, experimenter), experimenterOXMCodec); err != nil {
			return err
		}
	}
	return nil
}

// RegisterOXMClass installs the generic field codec for every field of a
// class other than the basic one, such as the Nicira extension classes.
func RegisterOXMClass(r *codec.Registry, class uint16) error {
	for field := uint8(0); field <= tlv.MaxField; field++ {
		if err := codec.Register(r, codec.MatchKey(Version, class, field), oxmCodec); err != nil {
			return err
		}
	}
	return nil
}
