package preservica

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/preservica-tools/preservica-upload/internal/remotetree"
)

const (
	xipNamespace     = "http://preservica.com/XIP/v6.0"
	metadataFileName = "metadata.xml"
	contentDir       = "content"
	securityTag      = "open"
)

type xipDocument struct {
	XMLName           xml.Name          `xml:"XIP"`
	Namespace         string            `xml:"xmlns,attr"`
	InformationObject informationObject `xml:"InformationObject"`
	Representation    representation    `xml:"Representation"`
	ContentObject     contentObject     `xml:"ContentObject"`
	Generation        generation        `xml:"Generation"`
	Bitstream         bitstream         `xml:"Bitstream"`
}

type informationObject struct {
	Ref         string `xml:"Ref"`
	Title       string `xml:"Title"`
	Description string `xml:"Description"`
	SecurityTag string `xml:"SecurityTag"`
	Parent      string `xml:"Parent"`
}

type representation struct {
	InformationObject string   `xml:"InformationObject"`
	Name              string   `xml:"Name"`
	Type              string   `xml:"Type"`
	ContentObjects    []string `xml:"ContentObjects>ContentObject"`
}

type contentObject struct {
	Ref         string `xml:"Ref"`
	Title       string `xml:"Title"`
	Description string `xml:"Description"`
	SecurityTag string `xml:"SecurityTag"`
	Parent      string `xml:"Parent"`
}

type generation struct {
	Original      bool     `xml:"original,attr"`
	Active        bool     `xml:"active,attr"`
	ContentObject string   `xml:"ContentObject"`
	Bitstreams    []string `xml:"Bitstreams>Bitstream"`
}

type bitstream struct {
	Filename         string   `xml:"Filename"`
	FileSize         int64    `xml:"FileSize"`
	PhysicalLocation string   `xml:"PhysicalLocation"`
	Fixities         []fixity `xml:"Fixities>Fixity"`
}

type fixity struct {
	Algorithm string `xml:"FixityAlgorithmRef"`
	Value     string `xml:"FixityValue"`
}

// PackageSingleFile wraps path into a simple asset package: one asset with
// one preservation representation holding the file, parented to folder.
// The package is written to the client's temp directory under a unique
// name and the caller owns it.
func (c *Client) PackageSingleFile(ctx context.Context, path string, folder remotetree.Folder) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}

	checksum, err := sha1File(ctx, path)
	if err != nil {
		return "", err
	}

	name := filepath.Base(path)
	title := strings.TrimSuffix(name, filepath.Ext(name))
	ioRef := uuid.NewString()
	coRef := uuid.NewString()

	doc := xipDocument{
		Namespace: xipNamespace,
		InformationObject: informationObject{
			Ref:         ioRef,
			Title:       title,
			Description: title,
			SecurityTag: securityTag,
			Parent:      folder.Ref,
		},
		Representation: representation{
			InformationObject: ioRef,
			Name:              "Preservation",
			Type:              "Preservation",
			ContentObjects:    []string{coRef},
		},
		ContentObject: contentObject{
			Ref:         coRef,
			Title:       title,
			Description: title,
			SecurityTag: securityTag,
			Parent:      ioRef,
		},
		Generation: generation{
			Original:      true,
			Active:        true,
			ContentObject: coRef,
			Bitstreams:    []string{name},
		},
		Bitstream: bitstream{
			Filename:         name,
			FileSize:         info.Size(),
			PhysicalLocation: contentDir,
			Fixities:         []fixity{{Algorithm: "SHA1", Value: checksum}},
		},
	}

	metadata, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode package metadata: %w", err)
	}

	dir := c.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	dest := filepath.Join(dir, ioRef+".zip")

	if err := writePackage(ctx, dest, append([]byte(xml.Header), metadata...), path, name); err != nil {
		_ = os.Remove(dest)
		return "", err
	}

	c.logger.Debug().Str("file", path).Str("package", dest).Str("folder", folder.Ref).Msg("created asset package")
	return dest, nil
}

func writePackage(ctx context.Context, dest string, metadata []byte, path, name string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	w, err := zw.Create(metadataFileName)
	if err != nil {
		return fmt.Errorf("failed to add metadata: %w", err)
	}
	if _, err := w.Write(metadata); err != nil {
		return fmt.Errorf("failed to add metadata: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	w, err = zw.Create(contentDir + "/" + name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish package: %w", err)
	}
	return out.Close()
}

func sha1File(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
