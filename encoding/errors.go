package encoding

import "errors"

var (
	// ErrVariableByteIntegerTooLarge indicates the value exceeds the maximum encodable value (268,435,455)
	ErrVariableByteIntegerTooLarge = errors.New("variable byte integer value exceeds maximum (268,435,455)")

	// ErrMalformedVariableByteInteger indicates invalid variable byte integer encoding
	ErrMalformedVariableByteInteger = errors.New("malformed variable byte integer")

	// ErrUnexpectedEOF indicates unexpected end of input while reading
	ErrUnexpectedEOF = errors.New("unexpected end of input")

	// ErrBufferTooSmall indicates the buffer is too small for the operation
	ErrBufferTooSmall = errors.New("buffer too small")

	ErrInvalidType         = errors.New("invalid packet type")
	ErrInvalidFlags        = errors.New("invalid flags for packet type")
	ErrInvalidQoS          = errors.New("invalid QoS level")
	ErrInvalidReservedType = errors.New("reserved packet type (0) not allowed")

	// Packet-related errors
	ErrInvalidProtocolName    = errors.New("invalid protocol name")
	ErrInvalidProtocolVersion = errors.New("invalid protocol version")
	ErrInvalidPacketID        = errors.New("invalid packet identifier")
	ErrMalformedPacket        = errors.New("malformed packet")

	// UTF-8 validation errors
	ErrInvalidUTF8           = errors.New("invalid UTF-8 encoding")
	ErrNullCharacter         = errors.New("null character (U+0000) not allowed in UTF-8 string")
	ErrInvalidCodePoint      = errors.New("invalid Unicode code point")
	ErrSurrogateCodePoint    = errors.New("UTF-16 surrogate code points (U+D800 to U+DFFF) not allowed")
	ErrNonCharacterCodePoint = errors.New("non-character code points (U+FFFE, U+FFFF) not allowed")
	ErrControlCharacter      = errors.New("control characters (U+0001 to U+001F, U+007F to U+009F) should be avoided")

	// Additional malformed packet detection errors
	ErrInvalidConnectFlags      = errors.New("invalid CONNECT flags: reserved bit must be 0")
	ErrInvalidWillQoS           = errors.New("invalid Will QoS level")
	ErrWillFlagMismatch         = errors.New("Will flag inconsistent with Will QoS or Will Retain")
	ErrMissingPacketID          = errors.New("missing packet identifier for QoS > 0")
	ErrInvalidPacketIDZero      = errors.New("packet identifier cannot be 0 for QoS > 0")
	ErrInvalidRemainingLength   = errors.New("remaining length exceeds maximum or packet bounds")
	ErrInvalidTopicName         = errors.New("invalid topic name")
	ErrInvalidTopicFilter       = errors.New("invalid topic filter")
	ErrEmptyTopicFilter         = errors.New("empty topic filter not allowed")
	ErrInvalidSubscriptionOpts  = errors.New("invalid subscription options")
	ErrEmptySubscriptionList    = errors.New("SUBSCRIBE packet must contain at least one subscription")
	ErrEmptyUnsubscribeList     = errors.New("UNSUBSCRIBE packet must contain at least one topic filter")
	ErrPayloadTooLarge         = errors.New("payload exceeds maximum size")
	ErrInvalidPublishTopicName = errors.New("PUBLISH topic name cannot contain wildcards")
	ErrUsernameWithoutFlag     = errors.New("username present but username flag not set")
	ErrPasswordWithoutFlag     = errors.New("password present but password flag not set")
	ErrPasswordWithoutUsername = errors.New("password flag set without username flag")
)
