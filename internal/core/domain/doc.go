// Package domain defines the core metric model for AggMesh.
//
// A Record is one aggregated metric value together with its kind
// discriminator. Metric names are byte strings received from the
// network and are never assumed to be valid UTF-8; they travel as
// []byte on the wire and become string-converted map keys locally.
package domain
