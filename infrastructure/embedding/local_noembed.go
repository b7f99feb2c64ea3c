//go:build !embed_model

package embedding

import "io/fs"

var embeddedModelFS fs.FS

const hasEmbeddedModel = false
