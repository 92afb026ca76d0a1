package artifact_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/snnstage/artifact"
	"github.com/sarchlab/snnstage/internal/testmodel"
	"github.com/sarchlab/snnstage/snn"
)

func tempDir() string {
	dir, err := os.MkdirTemp("", "artifact")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(os.RemoveAll, dir)
	return dir
}

var _ = Describe("Model directory", func() {
	It("should load what it saved", func() {
		dir := tempDir()
		m := testmodel.Model()

		Expect(artifact.SaveModel(dir, m)).To(Succeed())
		loaded, err := artifact.LoadModel(dir)

		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Params).To(Equal(m.Params))
		Expect(loaded.W1.Matrix()).To(Equal(m.W1.Matrix()))
		Expect(loaded.W2.Matrix()).To(Equal(m.W2.Matrix()))
		Expect(loaded.W1.Scale()).To(Equal(testmodel.Scale))
		Expect(loaded.Classes).To(Equal(m.Classes))
	})

	It("should derive integer thresholds from the float ones", func() {
		dir := tempDir()
		m := testmodel.Model()
		Expect(artifact.SaveModel(dir, m)).To(Succeed())

		d, err := artifact.LoadDescriptor(filepath.Join(dir, artifact.DescriptorFile))
		Expect(err).NotTo(HaveOccurred())
		d.IntThresholds = nil

		p := d.Params()
		Expect(p.ThresholdHidden).To(Equal(int16(64)))
		Expect(p.ThresholdOutput).To(Equal(int16(64)))
	})

	It("should report a missing descriptor", func() {
		_, err := artifact.LoadModel(tempDir())

		Expect(err).To(MatchError(artifact.ErrMissingArtifact))
	})

	It("should report missing weights", func() {
		dir := tempDir()
		Expect(artifact.SaveModel(dir, testmodel.Model())).To(Succeed())
		Expect(os.Remove(filepath.Join(dir, artifact.W2HexFile))).To(Succeed())

		_, err := artifact.LoadModel(dir)

		Expect(err).To(MatchError(artifact.ErrMissingArtifact))
	})

	It("should reject weights of the wrong size", func() {
		dir := tempDir()
		Expect(artifact.SaveModel(dir, testmodel.Model())).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, artifact.W2HexFile),
			[]byte("01\n02\n"), 0o644)).To(Succeed())

		_, err := artifact.LoadModel(dir)

		Expect(err).To(MatchError(snn.ErrShapeMismatch))
	})

	It("should reject malformed JSON", func() {
		dir := tempDir()
		Expect(os.WriteFile(filepath.Join(dir, artifact.DescriptorFile),
			[]byte("{"), 0o644)).To(Succeed())

		_, err := artifact.LoadModel(dir)

		Expect(err).To(MatchError(artifact.ErrFormat))
	})
})

var _ = Describe("Weight images", func() {
	var m snn.Int8Matrix

	BeforeEach(func() {
		var err error
		m, err = snn.Int8MatrixFromRows([][]int8{{-1, 0, 127}, {-127, 16, 5}})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should write two's complement bytes", func() {
		var buf bytes.Buffer

		Expect(artifact.WriteMem(&buf, m, "W")).To(Succeed())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines[0]).To(HavePrefix("// W: shape=[2, 3]"))
		Expect(lines[1:]).To(Equal([]string{"FF", "00", "7F", "81", "10", "05"}))
	})

	It("should read back a .mem image", func() {
		var buf bytes.Buffer
		Expect(artifact.WriteMem(&buf, m, "W")).To(Succeed())

		data, err := artifact.ParseHex(&buf)

		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(m.Flat()))
	})

	It("should write and read a .coe file", func() {
		var buf bytes.Buffer

		Expect(artifact.WriteCOE(&buf, m)).To(Succeed())
		Expect(buf.String()).To(HavePrefix(
			"memory_initialization_radix=16;\nmemory_initialization_vector=\nFF,\n"))
		Expect(buf.String()).To(HaveSuffix("05;\n"))

		data, err := artifact.ParseCOE(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(m.Flat()))
	})

	It("should read .coe files by extension", func() {
		path := filepath.Join(tempDir(), "w.coe")
		Expect(os.WriteFile(path, []byte(
			"memory_initialization_radix=16;\nmemory_initialization_vector=\n"+
				"FF,00,7F,\n81,10,05;\n"), 0o644)).To(Succeed())

		got, err := artifact.ReadWeights(path, 2, 3)

		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(m))
	})

	It("should reject a decimal radix", func() {
		_, err := artifact.ParseCOE(strings.NewReader(
			"memory_initialization_radix=10;\nmemory_initialization_vector=\n1;\n"))

		Expect(err).To(MatchError(artifact.ErrFormat))
	})

	It("should reject bad bytes", func() {
		_, err := artifact.ParseHex(strings.NewReader("FF\nXYZ\n"))

		Expect(err).To(MatchError(artifact.ErrFormat))
	})
})

var _ = Describe("Spike memories", func() {
	It("should write words and expected results", func() {
		var spikes, expected bytes.Buffer

		Expect(artifact.WriteSpikeMem(&spikes, "tc", []uint32{0xFFF, 0})).To(Succeed())
		Expect(artifact.WriteExpectedMem(&expected, "tc", snn.Result{
			Class: 2, Counts: []uint32{1, 0, 9},
		})).To(Succeed())

		words, err := artifact.ReadWords(&spikes)
		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint32{0xFFF, 0}))

		Expect(expected.String()).To(ContainSubstring("predicted_class=2 counts=[1,0,9]"))
		words, err = artifact.ReadWords(&expected)
		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint32{2, 1, 0, 9}))
	})

	It("should concatenate cases", func() {
		var spikes, expected bytes.Buffer
		cases := []artifact.Case{
			{Name: "a", Words: []uint32{1, 2}, Result: snn.Result{Counts: []uint32{0, 0, 0}}},
			{Name: "b", Words: []uint32{3, 4}, Result: snn.Result{Class: 1, Counts: []uint32{0, 5, 0}}},
		}

		Expect(artifact.WriteAllSpikes(&spikes, 2, cases)).To(Succeed())
		Expect(artifact.WriteAllExpected(&expected, cases)).To(Succeed())

		Expect(spikes.String()).To(ContainSubstring("// TC1: b\n00000003\n"))
		words, err := artifact.ReadWords(&expected)
		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint32{0, 0, 0, 0, 1, 0, 5, 0}))
	})
})

var _ = Describe("Vector files", func() {
	It("should parse what it writes", func() {
		var buf bytes.Buffer
		vecs := []artifact.Vector{{
			ID:       0,
			Label:    2,
			Model:    artifact.NoLabel,
			Expected: &snn.Result{Class: 1, Counts: []uint32{0, 10, 5}},
			Masks:    []uint32{0x1F, 0xFFF},
		}}

		Expect(artifact.WriteVectors(&buf, snn.DefaultParams(), vecs)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring(
			"TEST 0 LABEL 2 EXPECTED_CLASS 1 COUNTS 0 10 5\nMASK 01F\nMASK FFF\nEND\n"))

		got, err := artifact.ParseVectors(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(vecs))
	})

	It("should parse labelled windows", func() {
		in := "# samples\nWINDOW 7 LABEL 1 MODEL 2\nMASK 001\nEND\n\nWINDOW 8 LABEL 0\nMASK 000\nEND\n"

		got, err := artifact.ParseVectors(strings.NewReader(in))

		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0].ID).To(Equal(7))
		Expect(got[0].Model).To(Equal(2))
		Expect(got[0].Expected).To(BeNil())
		Expect(got[1].Model).To(Equal(artifact.NoLabel))
		Expect(got[1].Window().Len()).To(Equal(1))
	})

	It("should round-trip windows", func() {
		var buf bytes.Buffer
		vecs := []artifact.Vector{
			{ID: 1, Label: 0, Model: 0, Masks: []uint32{1, 2}},
			{ID: 2, Label: 2, Model: artifact.NoLabel, Masks: []uint32{3}},
		}

		Expect(artifact.WriteWindows(&buf, vecs)).To(Succeed())
		got, err := artifact.ParseVectors(&buf)

		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(vecs))
	})

	It("should reject unterminated blocks", func() {
		_, err := artifact.ParseVectors(strings.NewReader("WINDOW 1 LABEL 0\nMASK 1\n"))

		Expect(err).To(MatchError(artifact.ErrFormat))
	})

	It("should reject masks outside blocks", func() {
		_, err := artifact.ParseVectors(strings.NewReader("MASK 1\n"))

		Expect(err).To(MatchError(artifact.ErrFormat))
	})
})

var _ = Describe("RTL parameters", func() {
	It("should write the Verilog header", func() {
		var buf bytes.Buffer

		Expect(artifact.WriteVerilogParams(&buf, snn.DefaultParams(), 0.01, 0.02)).
			To(Succeed())

		Expect(buf.String()).To(ContainSubstring("parameter N_HIDDEN   = 32;"))
		Expect(buf.String()).To(ContainSubstring("parameter W1_DEPTH   = 384;"))
		Expect(buf.String()).To(ContainSubstring("// W2 scale = 0.02000000"))
	})

	It("should write params_rtl.json", func() {
		var buf bytes.Buffer

		Expect(artifact.WriteRTLParams(&buf, snn.DefaultParams())).To(Succeed())

		Expect(buf.String()).To(ContainSubstring(`"th_h": 64`))
		Expect(buf.String()).To(ContainSubstring(`"window_len": 10`))
	})

	It("should trace every timestep", func() {
		var buf bytes.Buffer
		eng := testmodel.Engine()
		res, traces := eng.Trace(testmodel.Repeat(0xFFF, 10))

		Expect(artifact.WriteTrace(&buf, "tc1_allones", eng.Params(), res, traces)).
			To(Succeed())

		Expect(buf.String()).To(ContainSubstring("Result: class=2 counts=[0,0,10]"))
		Expect(strings.Count(buf.String(), "--- t=")).To(Equal(10))
	})
})

var _ = Describe("Float weights", func() {
	It("should round-trip", func() {
		path := filepath.Join(tempDir(), artifact.FloatWeightsFile)
		m := testmodel.Model()

		Expect(artifact.WriteFloatWeights(path, m.W1.Dequantize(), m.W2.Dequantize())).
			To(Succeed())
		w1, w2, err := artifact.LoadFloatWeights(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(w1.Rows()).To(Equal(12))
		Expect(w2.Cols()).To(Equal(3))
		Expect(w1.At(0, 0)).To(Equal(m.W1.Dequantize().At(0, 0)))
	})
})
