// Package modelfile reads model description files: YAML documents holding
// the parts of a parsed Nitro model that skeleton and primitive building
// need.
//
// Any name can instead be given as raw_name, the hex of the 16-byte name
// field as stored in the model.
//
// Binary data (render commands, GPU commands, inverse bind blocks) is given
// as hex, whitespace ignored. Render and GPU commands can instead be listed
// one per line, which is handier for hand-written test models:
//
//	name: box
//	objects:
//	  - name: root
//	    trans: [0, 1, 0]
//	materials:
//	  - {name: wood, width: 64, height: 64}
//	meshes:
//	  - name: lid
//	    commands:
//	      - begin: 0
//	      - vertex: [0, 0, 0]
//	      - vertex: [1, 0, 0]
//	      - vertex: [0, 1, 0]
//	      - end: true
//	render_ops:
//	  - mul_object: 0
//	  - draw: 0
package modelfile

// File is the YAML layout of a model description.
type File struct {
	Name      string  `yaml:"name"`
	RawName   string  `yaml:"raw_name"`
	UpScale   float64 `yaml:"up_scale"`
	DownScale float64 `yaml:"down_scale"`

	Objects    []ObjectDesc   `yaml:"objects"`
	InvBinds   []InvBindDesc  `yaml:"inv_binds"`
	InvBindHex string         `yaml:"inv_binds_hex"` // raw block, one entry per object
	Materials  []MaterialDesc `yaml:"materials"`
	Meshes     []MeshDesc     `yaml:"meshes"`

	RenderCommands string         `yaml:"render_commands"` // hex
	RenderOps      []RenderOpDesc `yaml:"render_ops"`
}

// ObjectDesc is an object matrix, either as TRS components or as a 4x3
// column-major matrix.
type ObjectDesc struct {
	Name    string    `yaml:"name"`
	RawName string    `yaml:"raw_name"`
	Trans   []float64 `yaml:"trans"` // 3
	Rot     []float64 `yaml:"rot"`   // 9, column-major
	Scale   []float64 `yaml:"scale"` // 3
	Matrix  []float64 `yaml:"matrix"`
}

// InvBindDesc is an inverse bind matrix: 12 floats (4x3, column-major) or
// the hex of its 12 fixed-point words.
type InvBindDesc struct {
	Matrix []float64 `yaml:"matrix"`
	Hex    string    `yaml:"hex"`
}

// MaterialDesc is a material. TextureMatrix is 16 floats, column-major, and
// defaults to the identity.
type MaterialDesc struct {
	Name          string    `yaml:"name"`
	RawName       string    `yaml:"raw_name"`
	Width         uint16    `yaml:"width"`
	Height        uint16    `yaml:"height"`
	TextureMatrix []float64 `yaml:"texture_matrix"`
}

// MeshDesc is a mesh given by hex GPU commands or a command list.
type MeshDesc struct {
	Name        string       `yaml:"name"`
	RawName     string       `yaml:"raw_name"`
	GPUCommands string       `yaml:"gpu_commands"`
	Commands    []GPUCmdDesc `yaml:"commands"`
}

// GPUCmdDesc is one GPU command; exactly one field is set.
type GPUCmdDesc struct {
	Begin    *uint32   `yaml:"begin"`
	End      bool      `yaml:"end"`
	Restore  *uint32   `yaml:"restore"`
	Scale    []float64 `yaml:"scale"`
	Vertex   []float64 `yaml:"vertex"`
	TexCoord []float64 `yaml:"texcoord"`
	Color    []uint32  `yaml:"color"` // 5-bit channels
	Normal   []float64 `yaml:"normal"`
}

// RenderOpDesc is one render operation; exactly one field is set. Blend
// terms are [stack slot, inverse bind, weight out of 256].
type RenderOpDesc struct {
	Load         *uint8    `yaml:"load"`
	Store        *uint8    `yaml:"store"`
	MulObject    *uint8    `yaml:"mul_object"`
	Blend        [][]uint8 `yaml:"blend"`
	ScaleUp      bool      `yaml:"scale_up"`
	ScaleDown    bool      `yaml:"scale_down"`
	BindMaterial *uint8    `yaml:"bind_material"`
	Draw         *uint8    `yaml:"draw"`
}
