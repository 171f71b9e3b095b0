package packet

// Inbound client packet types (§6). The game-protocol (UDP) and chat
// (line-based) clients share this numbering for the types they both have
// an equivalent of; chat clients never send the position/weapon types.
const (
	CGotoArena     byte = 1
	CLeaveArena    byte = 2
	CLogin         byte = 3
	CPosition      byte = 4
	CSpecRequest   byte = 5
	CSetShip       byte = 6
	CSetFreq       byte = 7
	CDie           byte = 8
	CGreen         byte = 9
	CAttachTo      byte = 10
	CTurretKickOff byte = 11
	CMapRequest    byte = 12
	CNewsRequest   byte = 13
	CUpdateRequest byte = 14
	CTouchFlag     byte = 15
	CDropFlags     byte = 16
)

// Outbound server packet types (§6).
const (
	SWhoAmI         byte = 0x01
	SLoginResponse  byte = 0x02
	SContVersion    byte = 0x03
	SLoginText      byte = 0x04
	SWeapon         byte = 0x05
	SPlayerEntering byte = 0x06
	SEnteringArena  byte = 0x07
	SWarpTo         byte = 0x08
	SKill           byte = 0x09
	STurret         byte = 0x0a
	STurretKickoff  byte = 0x0b
	SFlagLocation   byte = 0x0c
	SFlagPickup     byte = 0x0d
	SFlagDrop       byte = 0x0e
	SFlagReset      byte = 0x0f
	SKeepAlive      byte = 0x10
	SMapFilename    byte = 0x11
	SMapData        byte = 0x12
	SIncomingFile   byte = 0x13
	SSpecData       byte = 0x14
	SShipChange     byte = 0x15
	SFreqChange     byte = 0x16
	SShipReset      byte = 0x17
	SPrizeRecv      byte = 0x18
	SPosition       byte = 0x28
)
