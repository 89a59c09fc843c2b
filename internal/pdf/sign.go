package pdf

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	pdfreader "github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/sign"
	"github.com/digitorus/pkcs7"

	"contractapi/internal/credential"
)

// SignatureInfo is embedded in the signature dictionary.
type SignatureInfo struct {
	Name        string
	Reason      string
	Location    string
	ContactInfo string
	Date        time.Time
}

// Sign appends a PKCS#7 detached approval signature to doc as an
// incremental update.
func Sign(doc []byte, cred *credential.Credential, info SignatureInfo) ([]byte, error) {
	if cred == nil || cred.Certificate == nil || cred.Signer == nil {
		return nil, errors.New("sign: incomplete credential")
	}
	size := int64(len(doc))
	rdr, err := pdfreader.NewReader(bytes.NewReader(doc), size)
	if err != nil {
		return nil, fmt.Errorf("sign: read pdf: %w", err)
	}

	chain := append([]*x509.Certificate{cred.Certificate}, cred.Chain...)
	var out bytes.Buffer
	err = sign.Sign(bytes.NewReader(doc), &out, rdr, size, sign.SignData{
		Signature: sign.SignDataSignature{
			Info: sign.SignDataSignatureInfo{
				Name:        info.Name,
				Location:    info.Location,
				Reason:      info.Reason,
				ContactInfo: info.ContactInfo,
				Date:        info.Date,
			},
			CertType:   sign.ApprovalSignature,
			DocMDPPerm: sign.AllowFillingExistingFormFieldsAndSignaturesPerms,
		},
		Signer:            cred.Signer,
		DigestAlgorithm:   crypto.SHA256,
		Certificate:       cred.Certificate,
		CertificateChains: [][]*x509.Certificate{chain},
	})
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return out.Bytes(), nil
}

var byteRangePattern = regexp.MustCompile(`/ByteRange\s*\[\s*(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s*\]`)

// Verify checks the last signature of doc against the bytes it covers and
// returns the signing certificate. The range must extend to the end of doc so
// that nothing was appended after signing.
func Verify(doc []byte) (*x509.Certificate, error) {
	matches := byteRangePattern.FindAllSubmatch(doc, -1)
	if len(matches) == 0 {
		return nil, errors.New("verify: document is not signed")
	}
	var r [4]int
	for i, m := range matches[len(matches)-1][1:] {
		n, err := strconv.Atoi(string(m))
		if err != nil {
			return nil, fmt.Errorf("verify: byte range: %w", err)
		}
		r[i] = n
	}
	if r[0] != 0 || r[2] <= r[1] || r[2]+r[3] != len(doc) {
		return nil, fmt.Errorf("verify: byte range %v does not cover the document", r)
	}

	contents := bytes.Trim(doc[r[1]:r[2]], "<> \r\n")
	raw, err := hex.DecodeString(string(contents))
	if err != nil {
		return nil, fmt.Errorf("verify: signature contents: %w", err)
	}
	// The contents slot is zero padded past the DER value.
	rest, err := asn1.Unmarshal(raw, &asn1.RawValue{})
	if err != nil {
		return nil, fmt.Errorf("verify: signature contents: %w", err)
	}
	p7, err := pkcs7.Parse(raw[:len(raw)-len(rest)])
	if err != nil {
		return nil, fmt.Errorf("verify: parse signature: %w", err)
	}

	signed := make([]byte, 0, r[1]+r[3])
	signed = append(signed, doc[:r[1]]...)
	signed = append(signed, doc[r[2]:]...)
	p7.Content = signed
	if err := p7.Verify(); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	signer := p7.GetOnlySigner()
	if signer == nil {
		return nil, errors.New("verify: expected exactly one signer")
	}
	return signer, nil
}
