package ident

import "llmcascade/internal/pkgerrors"

var errFilesystem = pkgerrors.ErrFilesystem
