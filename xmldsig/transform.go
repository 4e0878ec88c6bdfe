package xmldsig

import (
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"
	"github.com/russellhaering/goxmldsig/types"
)

// id attributes matched by same-document references
var idAttributes = []string{"ID", "Id", "id"}

func canonicalizer(algorithm, prefixList string) (dsig.Canonicalizer, error) {
	switch dsig.AlgorithmID(algorithm) {
	case dsig.CanonicalXML10ExclusiveAlgorithmId:
		return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList(prefixList), nil
	case dsig.CanonicalXML10ExclusiveWithCommentsAlgorithmId:
		return dsig.MakeC14N10ExclusiveWithCommentsCanonicalizerWithPrefixList(prefixList), nil
	case dsig.CanonicalXML11AlgorithmId:
		return dsig.MakeC14N11Canonicalizer(), nil
	case dsig.CanonicalXML11WithCommentsAlgorithmId:
		return dsig.MakeC14N11WithCommentsCanonicalizer(), nil
	case dsig.CanonicalXML10RecAlgorithmId:
		return dsig.MakeC14N10RecCanonicalizer(), nil
	case dsig.CanonicalXML10WithCommentsAlgorithmId:
		return dsig.MakeC14N10WithCommentsCanonicalizer(), nil
	default:
		return nil, fmt.Errorf("unsupported canonicalization %q", algorithm)
	}
}

// applyTransforms resolves the reference inside root and returns the transformed,
// canonical payload. root must be a private copy: the enveloped transform edits it.
func applyTransforms(root, sigEl *etree.Element, ref types.Reference) ([]byte, error) {
	target, err := resolveReference(root, ref.URI)
	if err != nil {
		return nil, err
	}

	var c dsig.Canonicalizer
	for _, t := range ref.Transforms.Transforms {
		if dsig.AlgorithmID(t.Algorithm) == dsig.EnvelopedSignatureAltorithmId {
			parent := sigEl.Parent()
			if parent == nil || parent.RemoveChild(sigEl) == nil {
				return nil, fmt.Errorf("enveloped signature cannot be removed")
			}
			continue
		}

		prefixList := ""
		if t.InclusiveNamespaces != nil {
			prefixList = t.InclusiveNamespaces.PrefixList
		}
		if c, err = canonicalizer(t.Algorithm, prefixList); err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
	}

	// node-set to octets defaults to inclusive c14n 1.0
	if c == nil {
		c = dsig.MakeC14N10RecCanonicalizer()
	}

	// carry the namespaces declared by the ancestors of the referenced element
	parentCtx, err := etreeutils.NSBuildParentContext(target)
	if err != nil {
		return nil, err
	}
	detached, err := etreeutils.NSDetatch(parentCtx, target)
	if err != nil {
		return nil, err
	}

	return c.Canonicalize(detached)
}

func resolveReference(root *etree.Element, uri string) (*etree.Element, error) {
	if uri == "" {
		return root, nil
	}
	if uri[0] != '#' || len(uri) == 1 {
		return nil, fmt.Errorf("unsupported reference URI %q", uri)
	}

	if el := findByID(root, uri[1:]); el != nil {
		return el, nil
	}
	return nil, fmt.Errorf("reference %q does not resolve", uri)
}

// findByID searches depth first, document order
func findByID(el *etree.Element, id string) *etree.Element {
	for _, attr := range idAttributes {
		if el.SelectAttrValue(attr, "") == id {
			return el
		}
	}
	for _, child := range el.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}
