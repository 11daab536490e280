package client

// Version is the tool version reported in User-Agent headers and recorded
// in provenance metadata.
const Version = "0.1.0"
