package internal

// Version is the driver version reported in the handshake.
const Version = "0.1.0"
