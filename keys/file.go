package keys

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
)

// fileFormatVersion is bumped whenever the on-disk encoding changes in a
// way that breaks backward compatibility.
const fileFormatVersion = 1

// file is the exact on-disk JSON shape: a version tag, the hex-encoded
// public key package, and a map from participant id string to hex-encoded
// signing share.
type file struct {
	Version           int               `json:"version"`
	PublicKeyPackage  string            `json:"public_key_package"`
	Shares            map[string]string `json:"shares"`
}

// encodePublicKeyPackage packs threshold, total, the group public key, and
// every verifying share into a single flat binary blob, hex-encoded in the
// key file.
func encodePublicKeyPackage(p *PublicKeyPackage) []byte {
	ids := make([]frost.ParticipantID, 0, len(p.VerifyingShares))
	for id := range p.VerifyingShares {
		ids = append(ids, id)
	}
	ids = frost.SortParticipantIDs(ids)

	buf := make([]byte, 0, 4+33+len(ids)*(2+33))
	var header [4]byte
	binary.BigEndian.PutUint16(header[0:2], uint16(p.Threshold))
	binary.BigEndian.PutUint16(header[2:4], uint16(p.Total))
	buf = append(buf, header[:]...)
	buf = append(buf, p.GroupPublicKey.SerializeCompressed()...)

	for _, id := range ids {
		var idBytes [2]byte
		binary.BigEndian.PutUint16(idBytes[:], uint16(id))
		buf = append(buf, idBytes[:]...)
		buf = append(buf, p.VerifyingShares[id].SerializeCompressed()...)
	}
	return buf
}

// decodePublicKeyPackage is the inverse of encodePublicKeyPackage. Returns
// ErrCorrupt on any length or parse mismatch.
func decodePublicKeyPackage(blob []byte) (*PublicKeyPackage, error) {
	if len(blob) < 4+33 {
		return nil, errs.Wrap(errs.ErrCorrupt, "public key package too short")
	}
	threshold := int(binary.BigEndian.Uint16(blob[0:2]))
	total := int(binary.BigEndian.Uint16(blob[2:4]))

	groupPubKey, err := secp256k1.ParsePubKey(blob[4:37])
	if err != nil {
		return nil, errs.Wrap(errs.ErrCorrupt, fmt.Sprintf("group public key: %v", err))
	}

	rest := blob[37:]
	if len(rest)%(2+33) != 0 {
		return nil, errs.Wrap(errs.ErrCorrupt, "verifying share table misaligned")
	}

	verifying := make(map[frost.ParticipantID]*secp256k1.PublicKey, len(rest)/(2+33))
	for off := 0; off < len(rest); off += 2 + 33 {
		id := frost.ParticipantID(binary.BigEndian.Uint16(rest[off : off+2]))
		pk, err := secp256k1.ParsePubKey(rest[off+2 : off+2+33])
		if err != nil {
			return nil, errs.Wrap(errs.ErrCorrupt, fmt.Sprintf("verifying share for participant %d: %v", id, err))
		}
		verifying[id] = pk
	}

	return &PublicKeyPackage{
		Threshold:       threshold,
		Total:           total,
		GroupPublicKey:  groupPubKey,
		VerifyingShares: verifying,
	}, nil
}

// Save writes every participant package to a single key file at path,
// atomically: marshal to JSON, write to a sibling temp file, fsync, then
// rename over the destination. The temp file name incorporates a random
// uuid so concurrent Save calls to the same path never collide.
func Save(path string, packages map[frost.ParticipantID]*Package) error {
	if len(packages) == 0 {
		return errs.Wrap(errs.ErrInvalidParameters, "no key packages to save")
	}

	var public *PublicKeyPackage
	shares := make(map[string]string, len(packages))
	ids := make([]frost.ParticipantID, 0, len(packages))
	for id, pkg := range packages {
		public = pkg.Public
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		scalarBytes := packages[id].SigningShare.Bytes()
		shares[fmt.Sprintf("%d", id)] = hex.EncodeToString(scalarBytes[:])
	}

	f := file{
		Version:          fileFormatVersion,
		PublicKeyPackage: hex.EncodeToString(encodePublicKeyPackage(public)),
		Shares:           shares,
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errs.Wrap(errs.ErrCorrupt, err.Error())
	}

	return atomicWrite(path, data)
}

// atomicWrite writes data to a temp file beside path, fsyncs it, then
// renames it over path. The rename is atomic on POSIX filesystems, so a
// reader never observes a partially written key file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}

	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}
	return nil
}

// Load reads a key file from path and returns every participant package it
// contains, consistency-checked against the embedded public key package.
func Load(path string) (map[frost.ParticipantID]*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errs.Wrap(errs.ErrCorrupt, err.Error())
	}
	if f.Version != fileFormatVersion {
		return nil, errs.Wrapf(errs.ErrCorrupt, "unsupported key file version %d", f.Version)
	}

	blob, err := hex.DecodeString(f.PublicKeyPackage)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCorrupt, err.Error())
	}
	public, err := decodePublicKeyPackage(blob)
	if err != nil {
		return nil, err
	}

	packages := make(map[frost.ParticipantID]*Package, len(f.Shares))
	for idStr, shareHex := range f.Shares {
		var id uint16
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			return nil, errs.Wrapf(errs.ErrCorrupt, "invalid participant id %q", idStr)
		}
		shareBytes, err := hex.DecodeString(shareHex)
		if err != nil || len(shareBytes) != 32 {
			return nil, errs.Wrapf(errs.ErrCorrupt, "invalid signing share for participant %d", id)
		}
		var share secp256k1.ModNScalar
		if overflow := share.SetByteSlice(shareBytes); overflow {
			return nil, errs.Wrapf(errs.ErrCorrupt, "signing share for participant %d overflows curve order", id)
		}

		packages[frost.ParticipantID(id)] = &Package{
			ParticipantID: frost.ParticipantID(id),
			SigningShare:  &share,
			Public:        public,
		}
	}

	if public.Total != len(public.VerifyingShares) {
		return nil, errs.Wrapf(errs.ErrCorrupt, "party count %d does not match %d verifying shares", public.Total, len(public.VerifyingShares))
	}
	if err := VerifyConsistency(packages); err != nil {
		return nil, err
	}

	return packages, nil
}
