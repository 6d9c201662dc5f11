// Package checkpoint saves and restores training state in the .born format.
//
// A checkpoint holds the model parameters, the optimizer state and the
// index of the last finished epoch:
//
//	Format Structure:
//	  [0x00: Magic "BORN"]
//	  [0x04: Version (uint32 LE)]
//	  [0x08: Flags (uint32 LE)]
//	  [0x0C: reserved]
//	  [0x10: Header Size (uint64 LE)]
//	  [0x18: Data Size (uint64 LE)]
//	  [0x20: SHA-256 of the data section]
//	  [0x40: Header: JSON metadata]
//	  [Data: little-endian float32 values, 64-byte aligned]
//
// Example usage:
//
//	learner.OnEpochEnd(checkpoint.EpochHook[In, Out]("runs/", "regression", log))
//
//	// Later, resume:
//	ckpt, err := checkpoint.Load("runs/epoch-0003.born")
//	if err != nil {
//	    return err
//	}
//	if err := ckpt.Restore(model.Params(), opt); err != nil {
//	    return err
//	}
package checkpoint
