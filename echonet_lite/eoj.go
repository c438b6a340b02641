// Package echonet_lite implements the ECHONET Lite wire format: object
// identifiers, service codes, properties, and the Format-1/Format-2 frame
// codec (ECHONET Lite spec v1.14, chapter 3 "Basic sequences").
package echonet_lite

import "fmt"

// ClassGroupCode is the first byte of an EOJ.
type ClassGroupCode byte

// ClassCode is the second byte of an EOJ.
type ClassCode byte

// InstanceCode is the third byte of an EOJ. 0x00 means "any instance".
type InstanceCode byte

const AnyInstance InstanceCode = 0x00

// EOJClassCode packs ClassGroupCode and ClassCode into a comparable value
// usable as a map key independent of instance.
type EOJClassCode uint16

func MakeEOJClassCode(group ClassGroupCode, class ClassCode) EOJClassCode {
	return EOJClassCode(uint16(group)<<8 | uint16(class))
}

func (c EOJClassCode) ClassGroupCode() ClassGroupCode {
	return ClassGroupCode(c >> 8)
}

func (c EOJClassCode) ClassCode() ClassCode {
	return ClassCode(c)
}

func (c EOJClassCode) Encode() []byte {
	return []byte{byte(c >> 8), byte(c)}
}

func (c EOJClassCode) String() string {
	return fmt.Sprintf("%04X", uint16(c))
}

// NodeProfileClassCode is the well-known class code for the node profile
// object (ECHONET Lite spec, class group 0x0E, class 0xF0).
const NodeProfileClassCode EOJClassCode = 0x0EF0

// DefaultSelfNodeInstanceCode is the instance code a self-node's node
// profile object uses unless configured otherwise (spec §6).
const DefaultSelfNodeInstanceCode InstanceCode = 0x01

// EOJ identifies an ECHONET object: class group, class, and instance.
// Packed into a uint32 so it is a cheap, comparable map key.
type EOJ uint32

func MakeEOJ(class EOJClassCode, instance InstanceCode) EOJ {
	return EOJ(uint32(class)<<8 | uint32(instance))
}

func (e EOJ) ClassCode() EOJClassCode {
	return EOJClassCode(e >> 8)
}

func (e EOJ) InstanceCode() InstanceCode {
	return InstanceCode(e)
}

func (e EOJ) IsNodeProfile() bool {
	return e.ClassCode() == NodeProfileClassCode
}

// IsAnyInstance reports whether this EOJ's instance code is the wildcard
// 0x00 ("any instance") used in some request DEOJs.
func (e EOJ) IsAnyInstance() bool {
	return e.InstanceCode() == AnyInstance
}

// DecodeEOJ decodes 3 raw wire bytes (group, class, instance) into an EOJ.
// Callers must ensure len(data) >= 3.
func DecodeEOJ(data []byte) EOJ {
	return MakeEOJ(MakeEOJClassCode(ClassGroupCode(data[0]), ClassCode(data[1])), InstanceCode(data[2]))
}

func (e EOJ) Encode() []byte {
	c := e.ClassCode()
	return []byte{byte(c.ClassGroupCode()), byte(c.ClassCode()), byte(e.InstanceCode())}
}

func (e EOJ) String() string {
	return fmt.Sprintf("%04X:%02X", uint16(e.ClassCode()), byte(e.InstanceCode()))
}
